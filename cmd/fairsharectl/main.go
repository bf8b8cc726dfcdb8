package main

import (
	"log"

	"github.com/scootdev/fairshare/ctl/cli"
)

func main() {
	c, err := cli.NewCliClient("http://localhost:9090")
	if err != nil {
		log.Fatal("cannot initialize fairsharectl: ", err)
	}
	if err := c.Exec(); err != nil {
		log.Fatal("error running fairsharectl: ", err)
	}
}
