package main

import "github.com/emberhome/ember/cmd"

func main() {
	cmd.Execute()
}
