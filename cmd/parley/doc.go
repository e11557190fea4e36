// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// parley is the interactive Parley chat client.
//
//	parley --name alice --server chat.example.org
//
// Every line typed is sent as a text. Lines starting with a slash are
// commands:
//
//	/file <path>   send a file to everyone else
//	/last          show where the most recently received file was saved
//	/help          list the commands
//	/quit          disconnect and exit
//
// Received files are saved under <download_dir>/<name>/. Peer text is
// stripped of terminal escape sequences before it is printed.
//
// Logs go to stderr at warn level by default, or to --log-file as JSON.
package main
