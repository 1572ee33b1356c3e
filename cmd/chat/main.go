package main

import (
	"os"

	"tebnegar/client/internal/app"
)

func main() {
	os.Exit(app.Run())
}
