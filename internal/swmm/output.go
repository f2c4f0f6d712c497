package swmm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/storm-data-flood-service/internal/domain"
)

const (
	// outputMagic opens and closes every SWMM 5 binary output file.
	outputMagic = 516114522

	recordSize = 4
	dateSize   = 8

	// openingRecords: magic, version, flow units, subcatchments, nodes, links, pollutants.
	openingRecords = 7
	closingRecords = 6
)

// Node reporting variables, in output-file order.
const (
	NodeDepth = iota
	NodeHead
	NodeVolume
	NodeLateralInflow
	NodeTotalInflow
	NodeFlooding
)

// ErrInvalidOutput is returned for truncated or corrupt output files and for
// runs the engine flagged with an error code.
var ErrInvalidOutput = errors.New("invalid swmm output")

// excelEpoch is day zero of the engine's date encoding.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// Output reads reporting-period results from a SWMM binary output file.
type Output struct {
	r      io.ReaderAt
	closer io.Closer

	Version    int32
	FlowUnits  int32
	ReportStep time.Duration
	StartDate  time.Time

	subcatchments int
	nodes         int
	links         int
	pollutants    int

	subcatchVars int
	nodeVars     int
	linkVars     int
	sysVars      int

	idPos         int64
	propertiesPos int64
	resultsPos    int64
	periods       int

	nodeIDs []string
}

// OpenOutput opens and indexes an output file. Close releases it.
func OpenOutput(path string) (*Output, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat output: %w", err)
	}
	out, err := ReadOutput(f, st.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	out.closer = f
	return out, nil
}

// ReadOutput indexes output data of the given size.
func ReadOutput(r io.ReaderAt, size int64) (*Output, error) {
	if size < (openingRecords+closingRecords)*recordSize {
		return nil, fmt.Errorf("%w: file too small (%d bytes)", ErrInvalidOutput, size)
	}
	o := &Output{r: r}
	rd := &recordReader{r: r, size: size}

	opening := rd.int32s(0, openingRecords)
	closing := rd.int32s(size-closingRecords*recordSize, closingRecords)
	if rd.err != nil {
		return nil, rd.err
	}
	if opening[0] != outputMagic || closing[5] != outputMagic {
		return nil, fmt.Errorf("%w: bad magic number", ErrInvalidOutput)
	}
	if closing[4] != 0 {
		return nil, fmt.Errorf("%w: engine reported error code %d", ErrInvalidOutput, closing[4])
	}
	if closing[3] <= 0 {
		return nil, fmt.Errorf("%w: no reporting periods", ErrInvalidOutput)
	}

	o.Version, o.FlowUnits = opening[1], opening[2]
	o.subcatchments, o.nodes, o.links, o.pollutants = int(opening[3]), int(opening[4]), int(opening[5]), int(opening[6])
	o.idPos, o.propertiesPos, o.resultsPos = int64(closing[0]), int64(closing[1]), int64(closing[2])
	o.periods = int(closing[3])

	if err := o.readVariableCounts(rd); err != nil {
		return nil, err
	}
	if err := o.readNodeIDs(rd); err != nil {
		return nil, err
	}

	// The report start date and step sit just before the first period.
	start := rd.float64At(o.resultsPos - 3*recordSize)
	step := rd.int32s(o.resultsPos-recordSize, 1)
	if rd.err != nil {
		return nil, rd.err
	}
	o.StartDate = fromEngineDate(start)
	o.ReportStep = time.Duration(step[0]) * time.Second

	if end := o.resultsPos + int64(o.periods)*o.bytesPerPeriod(); end > size {
		return nil, fmt.Errorf("%w: results truncated (need %d bytes, have %d)", ErrInvalidOutput, end, size)
	}
	return o, nil
}

// readVariableCounts skips the saved object properties and reads how many
// variables are reported per object type.
func (o *Output) readVariableCounts(rd *recordReader) error {
	pos := o.propertiesPos
	for _, count := range []int{o.subcatchments, o.nodes, o.links} {
		props := rd.int32s(pos, 1)
		if rd.err != nil {
			return rd.err
		}
		pos += int64(1+int(props[0])+count*int(props[0])) * recordSize
	}

	counts := make([]int, 4)
	for i := range counts {
		n := rd.int32s(pos, 1)
		if rd.err != nil {
			return rd.err
		}
		if n[0] < 0 {
			return fmt.Errorf("%w: negative variable count", ErrInvalidOutput)
		}
		counts[i] = int(n[0])
		pos += int64(1+counts[i]) * recordSize
	}
	o.subcatchVars, o.nodeVars, o.linkVars, o.sysVars = counts[0], counts[1], counts[2], counts[3]
	return nil
}

func (o *Output) readNodeIDs(rd *recordReader) error {
	pos := o.idPos
	for i := 0; i < o.subcatchments; i++ {
		_, next := rd.name(pos)
		pos = next
	}
	o.nodeIDs = make([]string, 0, o.nodes)
	for i := 0; i < o.nodes; i++ {
		id, next := rd.name(pos)
		if rd.err != nil {
			return rd.err
		}
		o.nodeIDs = append(o.nodeIDs, id)
		pos = next
	}
	return rd.err
}

func (o *Output) bytesPerPeriod() int64 {
	values := o.subcatchments*o.subcatchVars + o.nodes*o.nodeVars + o.links*o.linkVars + o.sysVars
	return dateSize + int64(values)*recordSize
}

// Close releases the underlying file when the output was opened from disk.
func (o *Output) Close() error {
	if o.closer == nil {
		return nil
	}
	return o.closer.Close()
}

// Periods is the number of reporting periods.
func (o *Output) Periods() int { return o.periods }

// NodeIDs lists node ids in output-file order.
func (o *Output) NodeIDs() []string {
	return append([]string(nil), o.nodeIDs...)
}

// Times returns the timestamp of every reporting period.
func (o *Output) Times() ([]time.Time, error) {
	rd := &recordReader{r: o.r, size: math.MaxInt64}
	times := make([]time.Time, o.periods)
	for p := range times {
		times[p] = fromEngineDate(rd.float64At(o.resultsPos + int64(p)*o.bytesPerPeriod()))
	}
	if rd.err != nil {
		return nil, rd.err
	}
	return times, nil
}

// NodeVariable returns one node variable for every node and period, keyed by node id.
func (o *Output) NodeVariable(variable int) (map[string][]float64, error) {
	if variable < 0 || variable >= o.nodeVars {
		return nil, fmt.Errorf("%w: node variable %d out of range (%d reported)", ErrInvalidOutput, variable, o.nodeVars)
	}

	out := make(map[string][]float64, o.nodes)
	for _, id := range o.nodeIDs {
		out[id] = make([]float64, o.periods)
	}

	block := make([]byte, o.nodes*o.nodeVars*recordSize)
	nodeOffset := dateSize + int64(o.subcatchments*o.subcatchVars)*recordSize
	for p := 0; p < o.periods; p++ {
		pos := o.resultsPos + int64(p)*o.bytesPerPeriod() + nodeOffset
		if _, err := o.r.ReadAt(block, pos); err != nil {
			return nil, fmt.Errorf("%w: read period %d: %v", ErrInvalidOutput, p, err)
		}
		for i, id := range o.nodeIDs {
			at := (i*o.nodeVars + variable) * recordSize
			bits := binary.LittleEndian.Uint32(block[at : at+recordSize])
			out[id][p] = float64(math.Float32frombits(bits))
		}
	}
	return out, nil
}

// NodeSeries returns one variable of one node across every period.
func (o *Output) NodeSeries(id string, variable int) ([]float64, error) {
	all, err := o.NodeVariable(variable)
	if err != nil {
		return nil, err
	}
	series, ok := all[id]
	if !ok {
		return nil, fmt.Errorf("node %s: %w", id, ErrUnknownElement)
	}
	return series, nil
}

// FloodSeries collects the flooding rate of every node.
func (o *Output) FloodSeries() (domain.FloodSeries, error) {
	times, err := o.Times()
	if err != nil {
		return domain.FloodSeries{}, err
	}
	flooding, err := o.NodeVariable(NodeFlooding)
	if err != nil {
		return domain.FloodSeries{}, err
	}
	return domain.FloodSeries{Times: times, Nodes: o.NodeIDs(), Flooding: flooding}, nil
}

// ReadFloodSeriesFile opens an output file, reads node flooding and closes it.
func ReadFloodSeriesFile(path string) (domain.FloodSeries, error) {
	out, err := OpenOutput(path)
	if err != nil {
		return domain.FloodSeries{}, err
	}
	defer out.Close()
	return out.FloodSeries()
}

func fromEngineDate(days float64) time.Time {
	return excelEpoch.Add(time.Duration(math.Round(days*86400)) * time.Second)
}

// recordReader reads little-endian records and remembers the first error.
type recordReader struct {
	r    io.ReaderAt
	size int64
	err  error
}

func (rd *recordReader) read(pos int64, n int) []byte {
	if rd.err != nil {
		return nil
	}
	if pos < 0 || pos+int64(n) > rd.size {
		rd.err = fmt.Errorf("%w: offset %d out of bounds", ErrInvalidOutput, pos)
		return nil
	}
	buf := make([]byte, n)
	if _, err := rd.r.ReadAt(buf, pos); err != nil {
		rd.err = fmt.Errorf("%w: read at %d: %v", ErrInvalidOutput, pos, err)
		return nil
	}
	return buf
}

func (rd *recordReader) int32s(pos int64, n int) []int32 {
	buf := rd.read(pos, n*recordSize)
	out := make([]int32, n)
	if buf == nil {
		return out
	}
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(buf[i*recordSize:]))
	}
	return out
}

func (rd *recordReader) float64At(pos int64) float64 {
	buf := rd.read(pos, dateSize)
	if buf == nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf))
}

// name reads a length-prefixed id and returns it with the position after it.
func (rd *recordReader) name(pos int64) (string, int64) {
	n := rd.int32s(pos, 1)[0]
	if rd.err != nil {
		return "", pos
	}
	if n < 0 || n > 1<<16 {
		rd.err = fmt.Errorf("%w: bad id length %d at %d", ErrInvalidOutput, n, pos)
		return "", pos
	}
	buf := rd.read(pos+recordSize, int(n))
	return string(buf), pos + recordSize + int64(n)
}
