package main

import (
	"log"

	"github.com/wharfhook/wharfhook/cmd/wharfctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
