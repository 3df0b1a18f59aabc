// Package sites links every provider into the binary. Import it for its side
// effects.
package sites

import (
	_ "github.com/brogergvhs/bibe/internal/providers/generic"
	_ "github.com/brogergvhs/bibe/internal/providers/mangadex"
)
