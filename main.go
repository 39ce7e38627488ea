package main

import "github.com/camden-git/facebench/cmd"

func main() {
	cmd.Execute()
}
