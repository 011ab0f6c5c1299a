// Package detect implements the multi-algorithm screen difference engine.
package detect

// Detection tuning constants. The values are empirical, carried over from
// production tuning of the capture pipeline.
const (
	// Summed RGB delta above which a single pixel counts as changed
	ChannelDeltaThreshold = 30

	// Channel-delta spread multiplier under which a shift is treated as a
	// lighting change and damped
	LightingSpreadFactor = 4

	// Full scans stop once the running change ratio exceeds this multiple
	// of the threshold
	PixelEarlyExitFactor = 2

	// Lattice step of the multi-scale pre-check
	CoarseScanStride = 8

	// Tile size divided by this gives the in-tile sampling stride
	BlockSampleDivisor = 4

	// Tile scanning stops once this fraction of all tiles changed
	BlockEarlyExitRatio = 0.30

	// Point sampling stops once changed points exceed this fraction of
	// the samples evaluated so far
	SamplingEarlyExitRatio = 0.20

	// Extra random samples per density unit when focusing on text
	TextSampleFactor = 5

	// Connected components below this pixel count are noise
	MinComponentPixels = 5

	// Sampled-cell groups below this cell count are noise
	MinSampledCells = 5

	// Adjacency distance for merging changed tiles
	TileMergeEps = 5

	// Adjacency distance for merging sampling and edge stage regions
	HybridMergeEps = 20

	// Histogram stage threshold multiplier (tighter, more sensitive)
	HybridHistogramFactor = 0.8

	// Edge stage weight multiplier inside the hybrid pipeline
	HybridEdgeWeightFactor = 1.2

	// Edge weight multiplier for explicit disappearance scans
	DisappearanceWeightFactor = 3

	// Sobel |gx|+|gy| above which a pixel is an edge
	SobelMagnitudeThreshold = 96

	// Luminance histogram resolution
	HistogramBins = 256

	// Sparse probe count when a frame cannot produce a luminance plane
	HistogramFallbackSamples = 128

	// Cell edge of the histogram coarse region pass
	CoarseCellSize = 16

	// Mean luminance delta that marks a coarse cell changed
	CoarseMeanDelta = 12

	// Cell edge for edge-density text analysis
	TextBlockSize = 16

	// Previous-frame edge density below which a cell never held text
	MinTextEdgeDensity = 0.10

	// Current edge count at or below this fraction of the previous count
	// marks disappearance
	TextDensityDropRatio = 0.5

	// Edge map cache capacity (frame pairs are re-scanned back to back)
	EdgeMapCacheSize = 8

	// Fixed seed for sample placement; spread matters, unpredictability
	// does not, and a stable sequence keeps runs reproducible
	DefaultSamplingSeed uint64 = 0x9E3779B97F4A7C15
)
