// Package docs provides generated OpenAPI documentation.
//
// bitbybit API
//
//	@title			bitbybit API
//	@version		1.0
//	@description	Splits PDF books into short, readable sections and tracks reading progress.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/bitbybit
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/bitbybit/serve.go -o ./swagger --parseDependency --parseInternal --outputTypes go
