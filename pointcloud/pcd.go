package pointcloud

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// PCDType is the data encoding of a pcd file.
type PCDType int

const (
	// PCDAscii stores one point per text line.
	PCDAscii PCDType = iota
	// PCDBinary stores little endian points back to back.
	PCDBinary
	// PCDCompressed is binary_compressed; it is recognized but not supported.
	PCDCompressed
)

// pcd coordinates are in meters, organized clouds in millimeters.
const pcdMetersToMM = 1000.

const pcdCommentChar = "#"

var pcdHeaderFields = []string{"VERSION", "FIELDS", "SIZE", "TYPE", "COUNT", "WIDTH", "HEIGHT", "VIEWPOINT", "POINTS", "DATA"}

type pcdHeader struct {
	// fields is 3 for "x y z" and 4 for "x y z rgb".
	fields int
	size   []int
	width  int
	height int
	points int
	data   PCDType
}

func parseUintTokens(name string, tokens []string, want int) ([]int, error) {
	if len(tokens) != want {
		return nil, errors.Errorf("unexpected number of fields in %s line", name)
	}
	out := make([]int, len(tokens))
	for i, token := range tokens {
		v, err := strconv.ParseUint(token, 10, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s field %s", name, token)
		}
		out[i] = int(v)
	}
	return out, nil
}

func parsePCDHeaderLine(line string, index int, header *pcdHeader) error {
	name := pcdHeaderFields[index]
	field, value, _ := strings.Cut(line, " ")
	tokens := strings.Fields(value)
	if field != name {
		return errors.Errorf("line is supposed to start with %s but is %s", name, line)
	}

	var err error
	switch name {
	case "VERSION":
		if value != ".7" && value != "0.7" {
			return errors.Errorf("unsupported pcd version %s", value)
		}
	case "FIELDS":
		switch strings.Join(tokens, " ") {
		case "x y z":
			header.fields = 3
		case "x y z rgb":
			header.fields = 4
		default:
			return errors.Errorf("unsupported pcd fields %s", value)
		}
	case "SIZE":
		if header.size, err = parseUintTokens(name, tokens, header.fields); err != nil {
			return err
		}
		for _, size := range header.size {
			if size != 4 && size != 8 {
				return errors.Errorf("unsupported pcd field size %d", size)
			}
		}
	case "TYPE":
		if len(tokens) != header.fields {
			return errors.Errorf("unexpected number of fields in TYPE line")
		}
		for i, token := range tokens[:3] {
			if token != "F" {
				return errors.Errorf("coordinate %d must be a float, got type %s", i, token)
			}
		}
	case "COUNT":
		counts, err := parseUintTokens(name, tokens, header.fields)
		if err != nil {
			return err
		}
		for _, c := range counts {
			if c != 1 {
				return errors.Errorf("unsupported pcd field count %d", c)
			}
		}
	case "WIDTH", "HEIGHT":
		v, err := parseUintTokens(name, tokens, 1)
		if err != nil {
			return err
		}
		if name == "WIDTH" {
			header.width = v[0]
		} else {
			header.height = v[0]
		}
	case "VIEWPOINT":
		// the sensor pose is not used; points are taken as given
		if len(tokens) != 7 {
			return errors.Errorf("unexpected number of fields in VIEWPOINT line. Expected 7, got %d", len(tokens))
		}
	case "POINTS":
		v, err := parseUintTokens(name, tokens, 1)
		if err != nil {
			return err
		}
		if v[0] != header.width*header.height {
			return errors.Errorf("POINTS field %d does not match WIDTH*HEIGHT %d", v[0], header.width*header.height)
		}
		header.points = v[0]
	case "DATA":
		switch value {
		case "ascii":
			header.data = PCDAscii
		case "binary":
			header.data = PCDBinary
		case "binary_compressed":
			header.data = PCDCompressed
		default:
			return errors.Errorf("unsupported pcd data type %s", value)
		}
	}
	return nil
}

// ReadPCDFile reads an organized cloud from a pcd file, see ReadPCD.
func ReadPCDFile(fn string) (*Organized, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, errors.Wrap(err, "error opening pcd file")
	}
	defer utils.UncheckedErrorFunc(f.Close)
	cloud, err := ReadPCD(f)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading pcd file %q", fn)
	}
	return cloud, nil
}

// ReadPCD reads a pcd v0.7 cloud with x y z (and optionally rgb, ignored) float fields. The
// WIDTH and HEIGHT of the header give the layout of the organized cloud; coordinates are
// converted from meters to millimeters and NaN points stay NaN.
func ReadPCD(r io.Reader) (*Organized, error) {
	header := pcdHeader{}
	in := bufio.NewReader(r)
	for index := 0; index < len(pcdHeaderFields); {
		line, err := in.ReadString('\n')
		if err != nil {
			return nil, errors.Wrapf(err, "error reading header line %d", index)
		}
		line, _, _ = strings.Cut(line, pcdCommentChar)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := parsePCDHeaderLine(line, index, &header); err != nil {
			return nil, err
		}
		index++
	}

	var pts []r3.Vector
	var err error
	switch header.data {
	case PCDAscii:
		pts, err = readPCDAscii(in, header)
	case PCDBinary:
		pts, err = readPCDBinary(in, header)
	case PCDCompressed:
		return nil, errors.New("compressed pcd not yet supported")
	default:
		return nil, errors.Errorf("unsupported pcd data type %v", header.data)
	}
	if err != nil {
		return nil, err
	}
	return NewOrganized(header.width, header.height, pts)
}

func pcdPoint(values []float64) r3.Vector {
	return r3.Vector{X: values[0], Y: values[1], Z: values[2]}.Mul(pcdMetersToMM)
}

func readPCDAscii(in *bufio.Reader, header pcdHeader) ([]r3.Vector, error) {
	pts := make([]r3.Vector, 0, header.points)
	values := make([]float64, header.fields)
	for i := 0; i < header.points; i++ {
		line, err := in.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return nil, errors.Wrapf(err, "error reading point %d", i)
		}
		tokens := strings.Fields(line)
		if len(tokens) != header.fields {
			return nil, errors.Errorf("unexpected number of fields in point %d", i)
		}
		for j, token := range tokens {
			values[j], err = strconv.ParseFloat(token, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid point %d field %s", i, token)
			}
		}
		pts = append(pts, pcdPoint(values))
	}
	return pts, nil
}

func readPCDBinary(in *bufio.Reader, header pcdHeader) ([]r3.Vector, error) {
	pts := make([]r3.Vector, 0, header.points)
	values := make([]float64, header.fields)
	buf := make([]byte, 8)
	for i := 0; i < header.points; i++ {
		for j := 0; j < header.fields; j++ {
			size := header.size[j]
			if _, err := io.ReadFull(in, buf[:size]); err != nil {
				return nil, errors.Wrapf(err, "error reading point %d", i)
			}
			if size == 4 {
				values[j] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
			} else {
				values[j] = math.Float64frombits(binary.LittleEndian.Uint64(buf))
			}
		}
		pts = append(pts, pcdPoint(values))
	}
	return pts, nil
}

// WritePCDFile writes the cloud to a pcd file, see WritePCD.
func WritePCDFile(cloud *Organized, fn string, dataType PCDType) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return errors.Wrap(err, "error creating pcd file")
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return WritePCD(cloud, f, dataType)
}

// WritePCD writes an organized x y z cloud in meters, as ascii or float32 binary.
func WritePCD(cloud *Organized, w io.Writer, dataType PCDType) error {
	var data, sizes string
	switch dataType {
	case PCDAscii:
		data, sizes = "ascii", "8 8 8"
	case PCDBinary:
		data, sizes = "binary", "4 4 4"
	case PCDCompressed:
		return errors.New("compressed pcd not yet supported")
	default:
		return errors.Errorf("unsupported pcd data type %v", dataType)
	}
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "VERSION .7\nFIELDS x y z\nSIZE %s\nTYPE F F F\nCOUNT 1 1 1\n"+
		"WIDTH %d\nHEIGHT %d\nVIEWPOINT 0 0 0 1 0 0 0\nPOINTS %d\nDATA %s\n",
		sizes, cloud.Width, cloud.Height, cloud.Size(), data); err != nil {
		return err
	}
	buf := make([]byte, 12)
	for _, pt := range cloud.Points {
		m := pt.Mul(1 / pcdMetersToMM)
		if dataType == PCDAscii {
			if _, err := fmt.Fprintf(bw, "%s %s %s\n", formatFloat(m.X), formatFloat(m.Y), formatFloat(m.Z)); err != nil {
				return err
			}
			continue
		}
		binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(float32(m.X)))
		binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(float32(m.Y)))
		binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(float32(m.Z)))
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
