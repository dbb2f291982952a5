package gmlas

var (
	// Version of the gmlas app. Set during the build with ldflags.
	Version = "v0.1.0"
	// Build timestamp. Set during the build with ldflags.
	Build = "n/a"
)
