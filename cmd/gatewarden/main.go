// gatewarden is a conversational security gate for physical checkpoints.
package main

import "github.com/ppiankov/gatewarden/internal/cli"

func main() {
	cli.Execute()
}
