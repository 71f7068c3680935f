package assembler

import (
	"fmt"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/verdocs/internal/errors"
)

const redirectTemplate = `<!DOCTYPE html>
<html>
<head>
<meta http-equiv="refresh" content="0; url=%s/index.html" />
<title>Redirecting</title>
</head>
</html>
`

// writeRootRedirect writes the top-level index.html that sends clients to the
// main ref's output root.
func writeRootRedirect(siteRoot, mainDir string) error {
	page := fmt.Sprintf(redirectTemplate, mainDir)
	path := filepath.Join(siteRoot, "index.html")
	if err := os.WriteFile(path, []byte(page), 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryAssembly, "failed to write root redirect").
			WithContext("path", path)
	}
	return nil
}
