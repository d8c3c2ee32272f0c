package main

import (
	"go.uber.org/fx"

	"github.com/ustabul/ustabul/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}
