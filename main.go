package main

import "github.com/example/student-portal/cmd"

func main() {
	cmd.Execute()
}
