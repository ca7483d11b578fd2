// Command hexplorectl is the admin CLI for the hexplore platform and
// exploration servers: it drives their plain HTTP admin surface (§6
// HTTP admin) to trigger config reloads and inspect live explorations.
package main

import "github.com/lowtide/hexplore/cmd/hexplorectl/commands"

func main() {
	commands.Execute()
}
