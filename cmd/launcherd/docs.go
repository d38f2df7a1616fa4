package main

// General API documentation for swaggo. Run `swag init` to generate docs.
//
// @title           launcherd API
// @version         1.0
// @description     Local lifecycle API for the launcher UI: game launch,
// @description     modpack install/update, ambient audio, server status.
// @BasePath        /
