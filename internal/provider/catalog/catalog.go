// Package catalog lists the built-in metadata sources. It lives outside the
// provider package so the sources can import provider without a cycle.
package catalog

import (
	"github.com/Digital-Shane/mediameta/internal/provider"
	"github.com/Digital-Shane/mediameta/internal/provider/bangumi"
	"github.com/Digital-Shane/mediameta/internal/provider/douban"
	"github.com/Digital-Shane/mediameta/internal/provider/imdb"
	"github.com/Digital-Shane/mediameta/internal/provider/omdb"
	"github.com/Digital-Shane/mediameta/internal/provider/so360"
	"github.com/Digital-Shane/mediameta/internal/provider/tmdb"
	"github.com/Digital-Shane/mediameta/internal/provider/tvdb"
)

// Builtin returns the descriptors of every built-in source in discovery
// order
func Builtin() []provider.Descriptor {
	return []provider.Descriptor{
		{Name: "360", New: so360.New},
		{Name: "bangumi", New: bangumi.New},
		{Name: "douban", New: douban.New},
		{Name: "imdb", New: imdb.New},
		{Name: "omdb", New: omdb.New},
		{Name: "tmdb", New: tmdb.New},
		{Name: "tvdb", New: tvdb.New},
	}
}
