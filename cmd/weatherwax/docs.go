package main

// General API documentation for swaggo. Regenerate internal/httpapi/docs with
// `swag init -g cmd/weatherwax/docs.go -o internal/httpapi/docs`.
//
// @title           weatherwax API
// @version         1.0
// @description     Streams chat replies from registered model providers as Server-Sent Events.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
