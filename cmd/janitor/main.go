package main

import "github.com/NooberThanYall/fixo-crm/services/janitor/cli"

func main() {
	cli.Execute()
}
