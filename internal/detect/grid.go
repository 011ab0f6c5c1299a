package detect

import "github.com/koizumiiiii/Baketa-sub013/internal/region"

// gridComponents collapses 4-connected true cells into one bounding
// rectangle per component, using an explicit stack flood fill (recursion
// would overflow on full-frame grids). Components with fewer than minCells
// cells are dropped. Rectangles are in cell coordinates.
func gridComponents(grid []bool, cols, rows, minCells int) []region.Rect {
	if cols <= 0 || rows <= 0 {
		return nil
	}

	visited := make([]bool, len(grid))
	var out []region.Rect
	var stack []int

	for start := range grid {
		if !grid[start] || visited[start] {
			continue
		}

		stack = append(stack[:0], start)
		visited[start] = true
		minX, minY := start%cols, start/cols
		maxX, maxY := minX, minY
		cells := 0

		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			cells++

			x, y := idx%cols, idx/cols
			minX = min(minX, x)
			maxX = max(maxX, x)
			minY = min(minY, y)
			maxY = max(maxY, y)

			if x > 0 && grid[idx-1] && !visited[idx-1] {
				visited[idx-1] = true
				stack = append(stack, idx-1)
			}
			if x < cols-1 && grid[idx+1] && !visited[idx+1] {
				visited[idx+1] = true
				stack = append(stack, idx+1)
			}
			if y > 0 && grid[idx-cols] && !visited[idx-cols] {
				visited[idx-cols] = true
				stack = append(stack, idx-cols)
			}
			if y < rows-1 && grid[idx+cols] && !visited[idx+cols] {
				visited[idx+cols] = true
				stack = append(stack, idx+cols)
			}
		}

		if cells < minCells {
			continue
		}
		out = append(out, region.Rect{X: minX, Y: minY, Width: maxX - minX + 1, Height: maxY - minY + 1})
	}
	return out
}

// scaleRects maps cell-space rectangles back to pixel space, clipped to the
// frame.
func scaleRects(rects []region.Rect, cell, w, h int) []region.Rect {
	out := make([]region.Rect, 0, len(rects))
	for _, r := range rects {
		p := region.Rect{X: r.X * cell, Y: r.Y * cell, Width: r.Width * cell, Height: r.Height * cell}.Clip(w, h)
		if !p.Empty() {
			out = append(out, p)
		}
	}
	return out
}

// alignToGrid expands a pixel-space box outward to the enclosing block
// lattice, clipped to the frame.
func alignToGrid(r region.Rect, block, w, h int) region.Rect {
	x0 := r.X / block * block
	y0 := r.Y / block * block
	x1 := (r.X + r.Width + block - 1) / block * block
	y1 := (r.Y + r.Height + block - 1) / block * block
	return region.Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}.Clip(w, h)
}

// componentRegions is the shared change-grid pipeline: connected components,
// block alignment, overlap merge, area filter.
func componentRegions(grid []bool, w, h int, s Settings) []region.Rect {
	components := gridComponents(grid, w, h, MinComponentPixels)
	aligned := make([]region.Rect, 0, len(components))
	for _, c := range components {
		aligned = append(aligned, alignToGrid(c, s.BlockSize, w, h))
	}
	return region.FilterMinArea(region.MergeAdjacent(aligned, 0), s.MinimumChangedArea)
}
