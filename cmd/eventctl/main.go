// Package main is the operator CLI for the event platform.
package main

import "github.com/spherelink/backend/cmd/eventctl/cmd"

func main() {
	cmd.Execute()
}
