package models

// All lists every model the schedule center migrates.
var All = []interface{}{
	&Job{},
	&Group{},
	&Action{},
	&History{},
	&Permission{},
	&HostGroup{},
}
