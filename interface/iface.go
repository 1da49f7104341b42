package iface

import "gocv.io/x/gocv"

type Backend interface {
	LoadModel(modelPath string, names NamesConf, conf float32, iou float32, useGPU bool) (bool, error)
	Detect(image gocv.Mat) ([]Detection, error)
	Destroy()
	CheckConfig() EngineConfig
	SetInputSize(size int)
}

type Tracker interface {
	Update(detections []Detection) []Track
}
