// Command api serves the zuperior account and session endpoints.
package main

import (
	"log"

	"github.com/finovotech001-eng/zuperior-api/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
