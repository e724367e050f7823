package main

import "github.com/KaramelBytes/dataprof/cmd"

func main() {
	cmd.Execute()
}
