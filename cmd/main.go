package main

import (
	"github.com/corray333/food-ordering/order/internal/app"
	"github.com/corray333/food-ordering/order/internal/config"
)

func main() {
	config.MustInit()
	app.MustNewApp().Run()
}
