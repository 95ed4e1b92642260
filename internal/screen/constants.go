package screen

// Frame geometry. Captures are squashed to Width x Height, then CropX/CropY
// pixels are removed from each side.
const (
	Width  = 426
	Height = 240
	CropX  = 42
	CropY  = 27

	FrameWidth  = Width - 2*CropX  // 342
	FrameHeight = Height - 2*CropY // 186
)
