// The main package for the critic-harvester executable.
package main

import "github.com/filmdata/critic-harvester/cmd"

func main() {
	cmd.Execute()
}
