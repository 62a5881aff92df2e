// Package path loads domino placement targets and expands them into
// waypoint paths.
package path

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
)

// Dominoe is a placement target: a point on the work surface in
// centimeters and the piece orientation in degrees.
type Dominoe struct {
	X           float64
	Y           float64
	Orientation float64
}

// Point returns the target position.
func (d Dominoe) Point() r2.Point {
	return r2.Point{X: d.X, Y: d.Y}
}

func (d Dominoe) String() string {
	return fmt.Sprintf("(%.2f, %.2f) @%.1f°", d.X, d.Y, d.Orientation)
}

// ParseTargets reads a target list: a count N followed by N "x y
// orientation" triples, all whitespace separated.
func ParseTargets(r io.Reader) ([]Dominoe, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)

	next := func(what string) (float64, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return 0, err
			}
			return 0, errors.Errorf("missing %s", what)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return 0, errors.Wrapf(err, "parse %s", what)
		}
		return v, nil
	}

	count, err := next("target count")
	if err != nil {
		return nil, err
	}
	if count < 0 || count != math.Trunc(count) || math.IsInf(count, 0) {
		return nil, errors.Errorf("invalid target count %v", count)
	}

	// The count comes from the file; grow with the triples actually read.
	targets := []Dominoe{}
	for i := 0; float64(i) < count; i++ {
		var vals [3]float64
		for j, what := range []string{"x", "y", "orientation"} {
			if vals[j], err = next(fmt.Sprintf("target %d %s", i+1, what)); err != nil {
				return nil, err
			}
		}
		targets = append(targets, Dominoe{X: vals[0], Y: vals[1], Orientation: vals[2]})
	}
	return targets, nil
}

// LoadTargets reads a target file.
func LoadTargets(path string) ([]Dominoe, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open targets")
	}
	defer f.Close()

	targets, err := ParseTargets(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return targets, nil
}

// Sort orders targets by less, keeping the file order among equals.
func Sort(targets []Dominoe, less func(a, b Dominoe) bool) {
	sort.SliceStable(targets, func(i, j int) bool {
		return less(targets[i], targets[j])
	})
}

// ByDistance orders targets nearest-first from origin.
func ByDistance(origin r2.Point) func(a, b Dominoe) bool {
	return func(a, b Dominoe) bool {
		return a.Point().Sub(origin).Norm() < b.Point().Sub(origin).Norm()
	}
}
