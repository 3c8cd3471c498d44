package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const demoFile = "clock.html"

// writeDemoApplet writes a small clock applet stamped with rev.
func writeDemoApplet(dir string, rev int) error {
	page := fmt.Sprintf(`<!doctype html>
<html>
<head><title>Demo Clock</title></head>
<body>
<h1>Demo Clock</h1>
<p>revision %d, written at %s</p>
<p id="now"></p>
<script>
setInterval(function () {
  document.getElementById("now").textContent = new Date().toLocaleTimeString();
}, 1000);
</script>
</body>
</html>
`, rev, time.Now().Format(time.TimeOnly))

	return os.WriteFile(filepath.Join(dir, demoFile), []byte(page), 0o644)
}
