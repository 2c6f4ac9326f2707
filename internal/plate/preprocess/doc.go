// Package preprocess turns a captured frame into the black-and-white variants
// the recognizer reads best.
//
// Three variants are produced per frame:
//
//   - standard: luma grayscale, linear contrast stretch, fixed threshold.
//   - aggressive: stronger contrast, 3×3 sharpen, local adaptive threshold.
//   - rotated: the frame deskewed to whichever small angle maximises
//     horizontal edge energy.
//
// Every operation allocates and returns a new raster.Image; inputs are never
// modified. Alpha is carried through unchanged.
package preprocess
