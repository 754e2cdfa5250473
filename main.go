package main

import (
	"fmt"

	"github.com/arcfabric/storecore/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		fmt.Println(err.Error())
		return
	}
}
