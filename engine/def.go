package engine

import (
	"fmt"
	"os"
	"reflect"
	"strings"
)

const UNREGISTERED = 0x0001
const REGISTERED = 0x0002
const IDLE = 0x0003
const BUSY = 0x0004

const DefaultInputSize = 640

// CocoNames are the class labels of the stock YOLOv8 checkpoints, index 0 is person.
var CocoNames = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear", "hair drier",
	"toothbrush",
}

// ReadLinesReadFile reads one class name per line, dropping blank lines and CR endings.
func ReadLinesReadFile(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw := strings.Split(string(b), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

func resolveNames(data any, isFile bool) ([]string, error) {
	if isFile {
		path, ok := data.(string)
		if !ok {
			return nil, fmt.Errorf("names file must be a path, got %T", data)
		}
		return ReadLinesReadFile(path)
	}
	if data == nil {
		return append([]string(nil), CocoNames...), nil
	}
	rv := reflect.ValueOf(data)
	if rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("names must be a slice or a file path, got %T", data)
	}
	names := make([]string, rv.Len())
	for i := range names {
		s, ok := rv.Index(i).Interface().(string)
		if !ok {
			return nil, fmt.Errorf("name %d is %T, want string", i, rv.Index(i).Interface())
		}
		names[i] = s
	}
	if len(names) == 0 {
		return append([]string(nil), CocoNames...), nil
	}
	return names, nil
}
