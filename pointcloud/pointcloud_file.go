package pointcloud

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// DefaultDelimiter separates coordinates in point cloud text files.
const DefaultDelimiter = ','

// csvSeparator is what WriteCSV puts between coordinates.
const csvSeparator = ", "

// ReadCSVFile reads an Nx3 array of points from a delimited text file.
func ReadCSVFile(fn string, delimiter rune) ([]r3.Vector, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, errors.Wrap(err, "error opening point cloud file")
	}
	defer utils.UncheckedErrorFunc(f.Close)
	pts, err := ReadCSV(f, delimiter)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading point cloud file %q", fn)
	}
	return pts, nil
}

// ReadCSV reads an Nx3 array of points, one point per line. Blank lines are skipped and
// spaces around values are ignored, so files written by WriteCSV read back unchanged.
func ReadCSV(r io.Reader, delimiter rune) ([]r3.Vector, error) {
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.FieldsPerRecord = 3
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	pts := make([]r3.Vector, 0)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return pts, nil
		}
		if err != nil {
			return nil, err
		}
		var coords [3]float64
		for i, field := range record {
			coords[i], err = strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				line, _ := reader.FieldPos(i)
				return nil, errors.Wrapf(err, "line %d", line)
			}
		}
		pts = append(pts, r3.Vector{X: coords[0], Y: coords[1], Z: coords[2]})
	}
}

// NewOrganizedFromCSVFile reads an image ordered Nx3 text file into an organized cloud.
func NewOrganizedFromCSVFile(fn string, width, height int, delimiter rune) (*Organized, error) {
	pts, err := ReadCSVFile(fn, delimiter)
	if err != nil {
		return nil, err
	}
	return NewOrganized(width, height, pts)
}

// WriteCSVFile writes the points to a text file, see WriteCSV.
func WriteCSVFile(pts []r3.Vector, fn string) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return errors.Wrap(err, "error creating point cloud file")
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return WriteCSV(pts, f)
}

// WriteCSV writes one point per line using the shortest representation that reads back
// to the exact same float64, with ", " between coordinates and no column alignment.
func WriteCSV(pts []r3.Vector, w io.Writer) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 96)
	for _, pt := range pts {
		buf = buf[:0]
		buf = strconv.AppendFloat(buf, pt.X, 'g', -1, 64)
		buf = append(buf, csvSeparator...)
		buf = strconv.AppendFloat(buf, pt.Y, 'g', -1, 64)
		buf = append(buf, csvSeparator...)
		buf = strconv.AppendFloat(buf, pt.Z, 'g', -1, 64)
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}
