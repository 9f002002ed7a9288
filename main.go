// Command libos boots the LibOS core against a configuration file and an
// entry-point guest binary, analogous to how gcsfuse's binary mounts a
// bucket: invoke as "libos run <entry-point> [flags]".
package main

import "github.com/golibos/libos/cmd"

func main() {
	cmd.Execute()
}
