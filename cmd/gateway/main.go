package main

import "github.com/NooberThanYall/fixo-crm/services/gateway/cli"

func main() {
	cli.Execute()
}
