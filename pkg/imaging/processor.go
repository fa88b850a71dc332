package imaging

// Options configures a Processor.
type Options struct {
	MinWidth     int
	MinHeight    int
	MaxWidth     int
	MaxHeight    int
	ThumbSize    int
	Quality      int
	ThumbQuality int
	// MaxPixels bounds width*height of accepted input.
	MaxPixels int
}

// DefaultOptions returns the logo defaults: between 100x100 and 4096x4096
// worth of pixels in, at most 800x800 out at quality 85, 200x200 thumbnails
// at quality 90.
func DefaultOptions() Options {
	return Options{
		MinWidth:     100,
		MinHeight:    100,
		MaxWidth:     800,
		MaxHeight:    800,
		ThumbSize:    200,
		Quality:      85,
		ThumbQuality: 90,
		MaxPixels:    4096 * 4096,
	}
}

// Processor applies a fixed set of Options to uploaded images.
type Processor struct {
	opts Options
}

// NewProcessor creates a Processor. Zero-valued fields fall back to DefaultOptions.
func NewProcessor(opts Options) *Processor {
	def := DefaultOptions()
	if opts.MinWidth <= 0 {
		opts.MinWidth = def.MinWidth
	}
	if opts.MinHeight <= 0 {
		opts.MinHeight = def.MinHeight
	}
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = def.MaxWidth
	}
	if opts.MaxHeight <= 0 {
		opts.MaxHeight = def.MaxHeight
	}
	if opts.ThumbSize <= 0 {
		opts.ThumbSize = def.ThumbSize
	}
	if opts.Quality <= 0 {
		opts.Quality = def.Quality
	}
	if opts.ThumbQuality <= 0 {
		opts.ThumbQuality = def.ThumbQuality
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = def.MaxPixels
	}
	return &Processor{opts: opts}
}

// Options returns the effective options.
func (p *Processor) Options() Options {
	return p.opts
}

// Validate checks the minimum dimensions and the pixel limit from the
// header alone.
func (p *Processor) Validate(f *File) error {
	return CheckDimensions(f, p.opts.MinWidth, p.opts.MinHeight, p.opts.MaxPixels)
}

// Optimize produces the bounded JPEG rendition of f.
func (p *Processor) Optimize(f *File) (*File, error) {
	if err := p.checkPixels(f); err != nil {
		return nil, err
	}
	return Optimize(f, p.opts.MaxWidth, p.opts.MaxHeight, p.opts.Quality)
}

// Thumbnail produces the square JPEG thumbnail of f.
func (p *Processor) Thumbnail(f *File) (*File, error) {
	if err := p.checkPixels(f); err != nil {
		return nil, err
	}
	return Thumbnail(f, p.opts.ThumbSize, p.opts.ThumbQuality)
}

func (p *Processor) checkPixels(f *File) error {
	return CheckDimensions(f, 0, 0, p.opts.MaxPixels)
}
