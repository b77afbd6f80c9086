package main

// ServeFlags decouples cobra's flag parsing from serve's logic, the same
// separation the teacher keeps between its cobra commands and plain flag
// structs.
type ServeFlags struct {
	Host       string
	Port       int
	APIKey     string
	DataDir    string
	ConfigPath string
}
