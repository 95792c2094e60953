// ABOUTME: Version information for linkaudio
// ABOUTME: Reported in session hellos and the CLI
package version

const (
	// Product is the product name sent to session hosts
	Product = "linkaudio"

	// Manufacturer identifies the software vendor
	Manufacturer = "Resonate"

	// Version is the release version
	Version = "0.1.0"
)

// String returns "product version"
func String() string {
	return Product + " " + Version
}
