package main

import "github.com/saturnino-fabrica-de-software/facefind/internal/cli"

func main() {
	cli.Execute()
}
