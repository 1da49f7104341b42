package engine

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"sync"

	iface "FootfallCounter/interface"
	"FootfallCounter/logger"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

var (
	ErrNotRegistered = errors.New("detector not registered")
	ErrNotLoaded     = errors.New("model not loaded")
	ErrBusy          = errors.New("detector is busy")
)

var _ iface.Backend = (*Detector)(nil)

// Detector runs a YOLOv8 ONNX export through the OpenCV DNN module.
type Detector struct {
	mu        sync.Mutex
	ModelPath string
	Names     []string
	Conf      float32
	Iou       float32
	UseGPU    bool
	InputSize int
	State     int
	// Classes limits decoding to these labels, empty keeps every class.
	Classes []string
	net     *gocv.Net
}

func (d *Detector) New() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.State = REGISTERED
	if d.InputSize == 0 {
		d.InputSize = DefaultInputSize
	}
	return true
}

func (d *Detector) CheckConfig() iface.EngineConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return iface.EngineConfig{
		ModelPath: d.ModelPath,
		Conf:      d.Conf,
		Iou:       d.Iou,
		UseGPU:    d.UseGPU,
		InputSize: d.InputSize,
		Names: iface.NamesConf{
			IsFile: false,
			Data:   append([]string(nil), d.Names...),
		},
	}
}

func (d *Detector) LoadModel(modelPath string, names iface.NamesConf, conf float32, iou float32, useGPU bool) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.State == 0 || d.State == UNREGISTERED {
		return false, ErrNotRegistered
	}
	if !strings.EqualFold(filepath.Ext(modelPath), ".onnx") {
		return false, fmt.Errorf("LoadModel only supports .onnx, got %q", modelPath)
	}
	if conf < 0 || conf > 1 {
		return false, fmt.Errorf("confidence must be between 0.0 and 1.0, got %f", conf)
	}
	if iou < 0 || iou > 1 {
		return false, fmt.Errorf("IoU must be between 0.0 and 1.0, got %f", iou)
	}
	resolved, err := resolveNames(names.Data, names.IsFile)
	if err != nil {
		return false, err
	}

	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		net.Close()
		return false, fmt.Errorf("failed to load ONNX network from %s", modelPath)
	}
	if useGPU {
		net.SetPreferableBackend(gocv.NetBackendCUDA)
		net.SetPreferableTarget(gocv.NetTargetCUDA)
	} else {
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
	}
	if d.net != nil {
		d.net.Close()
	}
	d.net = &net
	d.Names = resolved
	d.ModelPath = modelPath
	d.Conf = conf
	d.Iou = iou
	d.UseGPU = useGPU
	d.State = IDLE
	logger.Log().Info("Loaded detection model",
		zap.String("ModelPath", modelPath),
		zap.Int("Classes", len(resolved)),
		zap.Float32("Confidence", conf),
		zap.Float32("IoU", iou),
		zap.Bool("UseGPU", useGPU))
	return true, nil
}

func (d *Detector) SetInputSize(size int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if size > 0 {
		d.InputSize = size
	}
}

// SetClasses restricts Detect to the given labels. Other classes are dropped before
// NMS so they cannot suppress a wanted box.
func (d *Detector) SetClasses(classes ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Classes = append([]string(nil), classes...)
}

func (d *Detector) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.net != nil {
		d.net.Close()
	}
	d.net = nil
	d.ModelPath = ""
	d.Names = nil
	d.Conf = 0
	d.Iou = 0
	d.UseGPU = false
	d.State = UNREGISTERED
}

func (d *Detector) className(idx int) string {
	if idx >= 0 && idx < len(d.Names) {
		return d.Names[idx]
	}
	return fmt.Sprintf("class%d", idx)
}

// Detect returns every detection above the confidence threshold after per-frame NMS.
func (d *Detector) Detect(img gocv.Mat) ([]iface.Detection, error) {
	d.mu.Lock()
	switch d.State {
	case 0, UNREGISTERED:
		d.mu.Unlock()
		return nil, ErrNotRegistered
	case REGISTERED:
		d.mu.Unlock()
		return nil, ErrNotLoaded
	case BUSY:
		d.mu.Unlock()
		return nil, ErrBusy
	}
	d.State = BUSY
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		if d.State == BUSY {
			d.State = IDLE
		}
		d.mu.Unlock()
	}()

	if img.Empty() {
		return nil, errors.New("empty frame")
	}
	lb := newLetterbox(img.Cols(), img.Rows(), d.InputSize)

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, image.Pt(lb.resizedW, lb.resizedH), 0, 0, gocv.InterpolationLinear)
	padded := gocv.NewMat()
	defer padded.Close()
	gocv.CopyMakeBorder(resized, &padded, lb.padY, lb.padBot, lb.padX, lb.padR, gocv.BorderConstant, color.RGBA{114, 114, 114, 0})

	blob := gocv.BlobFromImage(padded, 1.0/255.0, image.Pt(lb.inputSize, lb.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()
	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	dims := output.Size()
	if len(dims) != 3 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output tensor: %w", err)
	}
	cands := keepClasses(decodeYOLOv8(data, dims[1], dims[2], d.Conf), classIndexes(d.Names, d.Classes))
	if len(cands) == 0 {
		return nil, nil
	}

	boxes := make([]iface.Box, len(cands))
	for i, c := range cands {
		boxes[i] = lb.toFrame(c)
	}
	keep := nmsByClass(cands, boxes, d.Conf, d.Iou)

	detections := make([]iface.Detection, 0, len(keep))
	for _, i := range keep {
		detections = append(detections, iface.Detection{
			Class: d.className(cands[i].class),
			Conf:  cands[i].score,
			Box:   boxes[i],
		})
	}
	return detections, nil
}

// FilterClass keeps detections whose label is class.
func FilterClass(detections []iface.Detection, class string) []iface.Detection {
	out := detections[:0:0]
	for _, det := range detections {
		if det.Class == class {
			out = append(out, det)
		}
	}
	return out
}
