package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           aegisd API
// @version         1.0
// @description     HTTP API for the local resource supervisor: routing, service registration, boot and health.
//
// @contact.name   aegisd maintainers
// @contact.url    https://github.com/your-org/aegisd
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
