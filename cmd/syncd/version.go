// SPDX-License-Identifier: Apache-2.0

package main

const version = "0.1.0"
