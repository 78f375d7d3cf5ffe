// Package appfs exposes embedded app assets: DB migrations and email templates.
package appfs

import "embed"

//go:embed migrations assets assets/templates/email/_base.txt assets/templates/email/_base.gohtml
var FS embed.FS
