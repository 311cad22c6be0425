// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"fmt"
	"regexp"
	"strings"
)

// imagesPrefix is the conventional image folder inside result archives and
// the sibling folder the merged document references.
const imagesPrefix = "images/"

// imageRefPattern matches Markdown image markup: "![", alt text up to "]",
// "(", path up to ")".
var imageRefPattern = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)

// RewriteImageRefs prefixes every images/-relative reference in md with the
// file's sequence index so names stay unique after the batch-wide merge:
// images/foo.png becomes images/0007_foo.png for index 7. References
// outside the images/ convention (external URLs, other relative paths) are
// left untouched. Pure text transformation, no I/O.
func RewriteImageRefs(md string, index int) string {
	return imageRefPattern.ReplaceAllStringFunc(md, func(ref string) string {
		groups := imageRefPattern.FindStringSubmatch(ref)
		alt, path := groups[1], groups[2]
		if !strings.HasPrefix(path, imagesPrefix) {
			return ref
		}
		rest := strings.TrimPrefix(path, imagesPrefix)
		return fmt.Sprintf("![%s](%s%04d_%s)", alt, imagesPrefix, index, rest)
	})
}
