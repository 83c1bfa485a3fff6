// Package preprocess normalizes photographed document images before
// vision model inference: border crop, deskew, lighting normalization,
// resize, JPEG re-encode. Every stage is fail-open — a stage that cannot
// improve the image leaves it untouched, and an undecodable input passes
// through unchanged.
package preprocess

import (
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/el-gladiador/medflow-backend/internal/port"
)

// Target dimensions for model input, chosen for token efficiency.
const (
	targetLandscapeWidth  = 1024
	targetLandscapeHeight = 768
	targetPortraitWidth   = 768
	targetPortraitHeight  = 1024

	jpegQuality = 95

	// A detected document quadrilateral must cover at least this share
	// of the image and map to at least minCropDim pixels per side.
	minAreaRatio = 0.2
	minCropDim   = 100

	minDeskewLines = 3
	minDeskewAngle = 5.0
)

// Pipeline is the image preprocessing pipeline. It is stateless and safe
// for concurrent use.
type Pipeline struct {
	log zerolog.Logger
}

var _ port.ImagePreprocessor = (*Pipeline)(nil)

// NewPipeline creates a preprocessing pipeline.
func NewPipeline(log zerolog.Logger) *Pipeline {
	return &Pipeline{log: log.With().Str("component", "preprocess").Logger()}
}

// Preprocess runs the full pipeline on raw image bytes and returns
// optimized JPEG bytes. If decoding fails the original input is returned
// byte-for-byte; if encoding fails the original input is the fallback.
func (p *Pipeline) Preprocess(imageBytes []byte) []byte {
	if len(imageBytes) == 0 {
		return imageBytes
	}

	img, err := gocv.IMDecode(imageBytes, gocv.IMReadColor)
	if err != nil || img.Empty() {
		p.log.Warn().Msg("could not decode image, returning original")
		if err == nil {
			_ = img.Close()
		}
		return imageBytes
	}

	cur := img
	cur = p.runStage("crop", cur, p.cropDocument)
	cur = p.runStage("deskew", cur, p.deskew)
	cur = p.runStage("normalize", cur, p.normalizeLighting)
	cur = p.runStage("resize", cur, p.resize)

	out := p.encodeJPEG(cur, imageBytes)
	_ = cur.Close()
	return out
}

// stageFunc attempts one transformation. changed=false means the stage
// was skipped and the returned Mat must be ignored.
type stageFunc func(src gocv.Mat) (dst gocv.Mat, changed bool)

// runStage applies fn to src, releasing src when the stage produced a
// new image. A panicking stage is contained and falls back to src, so no
// single computer-vision step can fail the request.
func (p *Pipeline) runStage(name string, src gocv.Mat, fn stageFunc) (result gocv.Mat) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Warn().Str("stage", name).Interface("cause", r).Msg("preprocessing stage failed")
			result = src
		}
	}()

	dst, changed := fn(src)
	if !changed {
		return src
	}
	_ = src.Close()
	return dst
}

// cropDocument finds the document's outline and perspective-crops to it.
// It inspects the five largest external contours for a quadrilateral
// covering at least 20% of the image.
func (p *Pipeline) cropDocument(src gocv.Mat) (gocv.Mat, bool) {
	gray := gocv.NewMat()
	defer func() { _ = gray.Close() }()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)

	blurred := gocv.NewMat()
	defer func() { _ = blurred.Close() }()
	gocv.GaussianBlur(gray, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer func() { _ = edges.Close() }()
	gocv.Canny(blurred, &edges, 50, 150)

	// Dilate to close gaps in the detected edges.
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer func() { _ = kernel.Close() }()
	dilated := gocv.NewMat()
	defer func() { _ = dilated.Close() }()
	gocv.Dilate(edges, &dilated, kernel)

	contours := gocv.FindContours(dilated, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	if contours.Size() == 0 {
		return gocv.Mat{}, false
	}

	type indexedArea struct {
		idx  int
		area float64
	}
	areas := make([]indexedArea, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		areas[i] = indexedArea{idx: i, area: gocv.ContourArea(contours.At(i))}
	}
	sort.Slice(areas, func(i, j int) bool { return areas[i].area > areas[j].area })
	if len(areas) > 5 {
		areas = areas[:5]
	}

	imageArea := float64(src.Rows() * src.Cols())
	for _, ia := range areas {
		contour := contours.At(ia.idx)
		peri := gocv.ArcLength(contour, true)
		approx := gocv.ApproxPolyDP(contour, 0.02*peri, true)

		if approx.Size() != 4 {
			approx.Close()
			continue
		}
		if gocv.ContourArea(approx)/imageArea < minAreaRatio {
			approx.Close()
			continue
		}

		quad := orderQuad([]image.Point{approx.At(0), approx.At(1), approx.At(2), approx.At(3)})
		approx.Close()

		if dst, ok := warpToRect(src, quad); ok {
			p.log.Debug().Msg("document border cropped")
			return dst, true
		}
	}

	return gocv.Mat{}, false
}

// orderQuad orders four corners as top-left, top-right, bottom-right,
// bottom-left. The top-left has the smallest coordinate sum, the
// bottom-right the largest; the top-right has the smallest y-x
// difference, the bottom-left the largest.
func orderQuad(pts []image.Point) [4]gocv.Point2f {
	var rect [4]gocv.Point2f
	minSum, maxSum := math.MaxFloat64, -math.MaxFloat64
	minDiff, maxDiff := math.MaxFloat64, -math.MaxFloat64

	for _, pt := range pts {
		p2f := gocv.Point2f{X: float32(pt.X), Y: float32(pt.Y)}
		sum := float64(pt.X + pt.Y)
		diff := float64(pt.Y - pt.X)

		if sum < minSum {
			minSum = sum
			rect[0] = p2f
		}
		if sum > maxSum {
			maxSum = sum
			rect[2] = p2f
		}
		if diff < minDiff {
			minDiff = diff
			rect[1] = p2f
		}
		if diff > maxDiff {
			maxDiff = diff
			rect[3] = p2f
		}
	}
	return rect
}

// warpToRect maps the ordered quadrilateral onto an axis-aligned
// rectangle sized by the longer of each pair of opposing edges. Targets
// smaller than minCropDim on either side are rejected.
func warpToRect(src gocv.Mat, rect [4]gocv.Point2f) (gocv.Mat, bool) {
	tl, tr, br, bl := rect[0], rect[1], rect[2], rect[3]

	maxWidth := int(math.Max(pointDist(br, bl), pointDist(tr, tl)))
	maxHeight := int(math.Max(pointDist(tr, br), pointDist(tl, bl)))
	if maxWidth < minCropDim || maxHeight < minCropDim {
		return gocv.Mat{}, false
	}

	srcPts := gocv.NewPoint2fVectorFromPoints([]gocv.Point2f{tl, tr, br, bl})
	defer srcPts.Close()
	dstPts := gocv.NewPoint2fVectorFromPoints([]gocv.Point2f{
		{X: 0, Y: 0},
		{X: float32(maxWidth - 1), Y: 0},
		{X: float32(maxWidth - 1), Y: float32(maxHeight - 1)},
		{X: 0, Y: float32(maxHeight - 1)},
	})
	defer dstPts.Close()

	matrix := gocv.GetPerspectiveTransform2f(srcPts, dstPts)
	defer func() { _ = matrix.Close() }()

	dst := gocv.NewMat()
	gocv.WarpPerspective(src, &dst, matrix, image.Pt(maxWidth, maxHeight))
	return dst, true
}

func pointDist(a, b gocv.Point2f) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// deskew estimates page rotation from near-horizontal line segments and
// rotates the image back when the median angle is at least 5 degrees.
func (p *Pipeline) deskew(src gocv.Mat) (gocv.Mat, bool) {
	gray := gocv.NewMat()
	defer func() { _ = gray.Close() }()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)

	edges := gocv.NewMat()
	defer func() { _ = edges.Close() }()
	gocv.Canny(gray, &edges, 50, 150)

	lines := gocv.NewMat()
	defer func() { _ = lines.Close() }()
	gocv.HoughLinesPWithParams(edges, &lines, 1, math.Pi/180, 100, 50, 10)

	var angles []float64
	for i := 0; i < lines.Rows(); i++ {
		v := lines.GetVeciAt(i, 0)
		angle := math.Atan2(float64(v[3]-v[1]), float64(v[2]-v[0])) * 180 / math.Pi
		if math.Abs(angle) < 45 {
			angles = append(angles, angle)
		}
	}
	if len(angles) < minDeskewLines {
		return gocv.Mat{}, false
	}

	median := medianOf(angles)
	if math.Abs(median) < minDeskewAngle {
		return gocv.Mat{}, false
	}

	p.log.Debug().Float64("angle", median).Msg("deskewing image")

	center := image.Pt(src.Cols()/2, src.Rows()/2)
	matrix := gocv.GetRotationMatrix2D(center, median, 1.0)
	defer func() { _ = matrix.Close() }()

	dst := gocv.NewMat()
	gocv.WarpAffineWithParams(src, &dst, matrix, image.Pt(src.Cols(), src.Rows()),
		gocv.InterpolationLinear, gocv.BorderReplicate, color.RGBA{})
	return dst, true
}

func medianOf(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// normalizeLighting applies CLAHE to the L channel in LAB color space,
// leaving chrominance untouched.
func (p *Pipeline) normalizeLighting(src gocv.Mat) (gocv.Mat, bool) {
	lab := gocv.NewMat()
	defer func() { _ = lab.Close() }()
	gocv.CvtColor(src, &lab, gocv.ColorBGRToLab)

	channels := gocv.Split(lab)
	defer func() {
		for i := range channels {
			_ = channels[i].Close()
		}
	}()
	if len(channels) != 3 {
		return gocv.Mat{}, false
	}

	clahe := gocv.NewCLAHEWithParams(2.0, image.Pt(8, 8))
	defer func() { _ = clahe.Close() }()

	equalized := gocv.NewMat()
	defer func() { _ = equalized.Close() }()
	clahe.Apply(channels[0], &equalized)

	merged := gocv.NewMat()
	defer func() { _ = merged.Close() }()
	gocv.Merge([]gocv.Mat{equalized, channels[1], channels[2]}, &merged)

	dst := gocv.NewMat()
	gocv.CvtColor(merged, &dst, gocv.ColorLabToBGR)
	return dst, true
}

// resize scales to the orientation-matched target preset unless the
// image is already within 10% of it on both axes.
func (p *Pipeline) resize(src gocv.Mat) (gocv.Mat, bool) {
	width, height := src.Cols(), src.Rows()

	targetWidth, targetHeight := targetPortraitWidth, targetPortraitHeight
	if width > height {
		targetWidth, targetHeight = targetLandscapeWidth, targetLandscapeHeight
	}

	widthOff := math.Abs(float64(width-targetWidth)) / float64(targetWidth)
	heightOff := math.Abs(float64(height-targetHeight)) / float64(targetHeight)
	if widthOff < 0.1 && heightOff < 0.1 {
		return gocv.Mat{}, false
	}

	dst := gocv.NewMat()
	gocv.Resize(src, &dst, image.Pt(targetWidth, targetHeight), 0, 0, gocv.InterpolationArea)
	return dst, true
}

// encodeJPEG re-encodes the image at quality 95, returning fallback on
// failure.
func (p *Pipeline) encodeJPEG(img gocv.Mat, fallback []byte) []byte {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, jpegQuality})
	if err != nil {
		p.log.Warn().Err(err).Msg("JPEG encode failed, returning fallback")
		return fallback
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out
}
