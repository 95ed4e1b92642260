package main

import "github.com/andresmejia3/itemwatch/cmd"

func main() {
	cmd.Execute()
}
