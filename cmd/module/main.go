// Package main is a module which serves point clouds reconstructed from Physion recordings
package main

import (
	"go.viam.com/rdk/module"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/vision"

	"github.com/viam-modules/physion-pointcloud/physion"
)

func main() {
	module.ModularMain(
		resource.APIModel{API: vision.API, Model: physion.Model},
	)
}
