package main

import (
	"pressurecycle"

	"go.viam.com/rdk/components/sensor"
	"go.viam.com/rdk/module"
	"go.viam.com/rdk/resource"
	generic "go.viam.com/rdk/services/generic"
)

func main() {
	module.ModularMain(
		resource.APIModel{generic.API, pressurecycle.Controller},
		resource.APIModel{sensor.API, pressurecycle.RigSensor},
	)
}
