package pointcloud

import (
	"github.com/edaniels/lidario"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// NewOrganizedFromLASFile reads the points of a LAS file, in file order, as a width x height
// organized cloud.
func NewOrganizedFromLASFile(fn string, width, height int) (*Organized, error) {
	lf, err := lidario.NewLasFile(fn, "r")
	if err != nil {
		return nil, errors.Wrapf(err, "error opening las file %q", fn)
	}
	defer utils.UncheckedErrorFunc(lf.Close)

	pts := make([]r3.Vector, 0, lf.Header.NumberPoints)
	for i := 0; i < lf.Header.NumberPoints; i++ {
		p, err := lf.LasPoint(i)
		if err != nil {
			return nil, errors.Wrapf(err, "error reading las point %d", i)
		}
		data := p.PointData()
		pts = append(pts, r3.Vector{X: data.X, Y: data.Y, Z: data.Z})
	}
	return NewOrganized(width, height, pts)
}

// WriteLASFile writes the points of the cloud, in raster order, to a LAS file.
func WriteLASFile(cloud *Organized, fn string) (err error) {
	lf, err := lidario.NewLasFile(fn, "w")
	if err != nil {
		return errors.Wrapf(err, "error creating las file %q", fn)
	}
	defer func() {
		err = multierr.Combine(err, lf.Close())
	}()

	if err := lf.AddHeader(lidario.LasHeader{PointFormatID: 0}); err != nil {
		return err
	}
	for _, pt := range cloud.Points {
		if err := lf.AddLasPoint(&lidario.PointRecord0{
			X: pt.X,
			Y: pt.Y,
			Z: pt.Z,
			BitField: lidario.PointBitField{
				Value: (1) | (1 << 3),
			},
			PointSourceID: 1,
		}); err != nil {
			return err
		}
	}
	return nil
}
