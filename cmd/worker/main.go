package main

import "github.com/NooberThanYall/fixo-crm/services/worker/cli"

func main() {
	cli.Execute()
}
