// Package transform converts between depth pixels and 3D points using pinhole camera intrinsics.
package transform

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/cape/pointcloud"
	"go.viam.com/cape/rimage"
)

// ErrNoIntrinsics is when a camera does not have intrinsics parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError is used when the intriniscs are not defined.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// PinholeCameraIntrinsics holds the parameters necessary to do a perspective projection of a 3D scene to the 2D plane.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("Intrinsics do not exist")
	}
	if params.Width == 0 || params.Height == 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid size (%#v, %#v)", params.Width, params.Height))
	}
	if params.Fx <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fx = %#v", params.Fx))
	}
	if params.Fy <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fy = %#v", params.Fy))
	}
	if params.Ppx < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal X point Ppx = %#v", params.Ppx))
	}
	if params.Ppy < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal Y point Ppy = %#v", params.Ppy))
	}
	return nil
}

// Matrix returns the 3x3 camera matrix [[fx, 0, ppx], [0, fy, ppy], [0, 0, 1]].
func (params *PinholeCameraIntrinsics) Matrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		params.Fx, 0, params.Ppx,
		0, params.Fy, params.Ppy,
		0, 0, 1,
	})
}

// NewPinholeCameraIntrinsicsFromMatrix reads fx, fy, ppx and ppy out of a 3x3 camera matrix.
// The matrix does not carry the image size, so Width and Height are left for the caller.
func NewPinholeCameraIntrinsicsFromMatrix(k mat.Matrix) (*PinholeCameraIntrinsics, error) {
	if r, c := k.Dims(); r != 3 || c != 3 {
		return nil, errors.Errorf("camera matrix must be 3x3, got %dx%d", r, c)
	}
	if k.At(1, 0) != 0 || k.At(2, 0) != 0 || k.At(2, 1) != 0 || k.At(2, 2) != 1 {
		return nil, errors.Errorf("camera matrix is not of the form [[fx, 0, cx], [0, fy, cy], [0, 0, 1]]: %v",
			mat.Formatted(k, mat.FormatPython()))
	}
	return &PinholeCameraIntrinsics{
		Fx:  k.At(0, 0),
		Fy:  k.At(1, 1),
		Ppx: k.At(0, 2),
		Ppy: k.At(1, 2),
	}, nil
}

// ReadIntrinsicsMatrix reads a 3x3 matrix written as three lines of three whitespace
// separated numbers.
func ReadIntrinsicsMatrix(r io.Reader) (*mat.Dense, error) {
	values := make([]float64, 0, 9)
	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)
	for scanner.Scan() {
		if len(values) == 9 {
			return nil, errors.New("intrinsics file has more than 9 values")
		}
		v, err := strconv.ParseFloat(scanner.Text(), 64)
		if err != nil {
			return nil, errors.Wrap(err, "error parsing intrinsics value")
		}
		values = append(values, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(values) != 9 {
		return nil, errors.Errorf("intrinsics file must have 9 values, got %d", len(values))
	}
	return mat.NewDense(3, 3, values), nil
}

// NewPinholeCameraIntrinsicsFromFile reads intrinsics from a JSON file (.json) or from a
// text file holding the 3x3 camera matrix. For the latter, width and height are taken from
// the arguments.
func NewPinholeCameraIntrinsicsFromFile(fn string, width, height int) (*PinholeCameraIntrinsics, error) {
	if strings.EqualFold(filepath.Ext(fn), ".json") {
		return NewPinholeCameraIntrinsicsFromJSONFile(fn)
	}
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, errors.Wrap(err, "error opening intrinsics file")
	}
	defer utils.UncheckedErrorFunc(f.Close)
	k, err := ReadIntrinsicsMatrix(f)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading intrinsics file %q", fn)
	}
	params, err := NewPinholeCameraIntrinsicsFromMatrix(k)
	if err != nil {
		return nil, err
	}
	params.Width = width
	params.Height = height
	return params, nil
}

// NewPinholeCameraIntrinsicsFromJSONFile takes in a file path to a JSON and turns it into PinholeCameraIntrinsics.
func NewPinholeCameraIntrinsicsFromJSONFile(jsonPath string) (*PinholeCameraIntrinsics, error) {
	// open json file
	//nolint:gosec
	jsonFile, err := os.Open(jsonPath)
	if err != nil {
		err = errors.Wrap(err, "error opening JSON file")
		return nil, err
	}
	defer utils.UncheckedErrorFunc(jsonFile.Close)
	// read our opened jsonFile as a byte array.
	byteValue, err2 := io.ReadAll(jsonFile)
	if err2 != nil {
		err2 = errors.Wrap(err2, "error reading JSON data")
		return nil, err2
	}
	// Parse into map
	intrinsics := &PinholeCameraIntrinsics{}
	err = json.Unmarshal(byteValue, intrinsics)
	if err != nil {
		err = errors.Wrap(err, "error parsing JSON string")
		return nil, err
	}
	return intrinsics, nil
}

// PixelToPoint transforms a pixel with depth to a 3D point cloud.
// The intrinsics parameters should be the ones of the sensor used to obtain the image that
// contains the pixel.
func (params *PinholeCameraIntrinsics) PixelToPoint(x, y, z float64) (float64, float64, float64) {
	if params == nil {
		return float64(0), float64(0), float64(0)
	}
	xOverZ := (x - params.Ppx) / params.Fx
	yOverZ := (y - params.Ppy) / params.Fy
	// get x and y
	xm := xOverZ * z
	ym := yOverZ * z
	return xm, ym, z
}

// DepthMapToOrganizedCloud back-projects every pixel of the depth map. Pixels without a
// reading become the zero vector so the raster layout is kept.
func (params *PinholeCameraIntrinsics) DepthMapToOrganizedCloud(dm *rimage.DepthMap) (*pointcloud.Organized, error) {
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	if params.Width != dm.Width() || params.Height != dm.Height() {
		return nil, errors.Errorf("depth map dimension and intrinsics don't match DepthMap(%d,%d) != Intrinsics(%d,%d)",
			dm.Width(), dm.Height(), params.Width, params.Height)
	}
	cloud := pointcloud.NewEmptyOrganized(dm.Width(), dm.Height())
	for v := 0; v < dm.Height(); v++ {
		for u := 0; u < dm.Width(); u++ {
			z := dm.GetDepth(u, v)
			if z == 0 {
				continue
			}
			x, y, zf := params.PixelToPoint(float64(u), float64(v), float64(z))
			cloud.Set(u, v, r3.Vector{X: x, Y: y, Z: zf})
		}
	}
	return cloud, nil
}
