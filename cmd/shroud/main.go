// Command shroud is the command line front end of the shroud privacy layer.
package main

import "os"

func main() {
	os.Exit(Execute())
}
