package main

import "github.com/vibast-solutions/ms-go-payments-router/cmd"

func main() {
	cmd.Execute()
}
