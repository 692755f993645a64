package pipeline

import "path/filepath"

// Layout maps the conventional checkout structure: the pipeline runs from
// the repository root, with the application project, variant catalog,
// keystores, Magisk support files, and artifact store at fixed locations
// beneath it.
type Layout struct {
	Root string
}

// ProjectDir is the Android application checkout (a git submodule).
func (l Layout) ProjectDir() string {
	return filepath.Join(l.Root, "OpenEUICC")
}

// CatalogPath is the declarative variant catalog.
func (l Layout) CatalogPath() string {
	return filepath.Join(l.Root, "variants.lua")
}

// KeystoreDir receives the provisioned signing keystores.
func (l Layout) KeystoreDir() string {
	return filepath.Join(l.Root, "keystore")
}

// ArtifactDir is the artifact store for signed outputs.
func (l Layout) ArtifactDir() string {
	return filepath.Join(l.Root, "artifacts")
}

// CustomizeTemplate is the customize.sh template embedded into the module
// archive.
func (l Layout) CustomizeTemplate() string {
	return filepath.Join(l.Root, "magisk-module", "customize.sh")
}

// WhitelistXML is the privapp permissions manifest, maintained alongside
// the application source.
func (l Layout) WhitelistXML() string {
	return filepath.Join(l.ProjectDir(), "privapp_whitelist_im.angry.openeuicc.xml")
}
