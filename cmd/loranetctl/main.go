// loranetctl -- offline frame decode/encode and key tooling for loranetd.
package main

import "github.com/loranet/loranet/cmd/loranetctl/commands"

func main() {
	commands.Execute()
}
